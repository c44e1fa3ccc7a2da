package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/sources"
)

const maxRequestBody = 1 << 20

// findRequest POST /api/v1/sources/find 请求体
type findRequest struct {
	Text      string    `json:"text" validate:"required"`
	SourceURL string    `json:"sourceUrl"`
	Persona   string    `json:"persona"`
	Size      *intParam `json:"size" validate:"omitempty,min=1,max=20"`
}

// intParam accepts a JSON integer or a string holding one ("5").
type intParam int

func (n *intParam) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return &json.UnmarshalTypeError{Value: s, Type: reflect.TypeOf(0)}
	}
	*n = intParam(v)
	return nil
}

type findResponse struct {
	Query    string                 `json:"query"`
	Results  []sources.SearchResult `json:"results"`
	Attempts int                    `json:"attempts"`
	Failures int                    `json:"failures"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) handleFindSources(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if errs := decodeFindRequest(w, r, &req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	size := 0
	if req.Size != nil {
		size = int(*req.Size)
	}

	out, err := s.finder.Find(r.Context(), sources.Request{
		Text:      req.Text,
		SourceURL: req.SourceURL,
		Persona:   req.Persona,
		Size:      size,
	})
	if err != nil {
		s.logger.Error("sources/find failed",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Error(err))
		message := err.Error()
		if errors.Is(err, sources.ErrNotConfigured) {
			message = "Search not configured"
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": message})
		return
	}

	writeJSON(w, http.StatusOK, findResponse{
		Query:    req.Text,
		Results:  out.Results,
		Attempts: out.Attempts,
		Failures: out.Failures,
	})
}

func decodeFindRequest(w http.ResponseWriter, r *http.Request, req *findRequest) []FieldError {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return []FieldError{{Field: typeErr.Field, Message: typeErr.Field + " has the wrong type"}}
		}
		return []FieldError{{Field: "body", Message: "request body must be a JSON object"}}
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "text":
		return "text is required"
	case "size":
		return "size must be between 1 and 20"
	default:
		return fe.Field() + " is invalid"
	}
}
