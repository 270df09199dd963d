package httpadapter

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

func bindDocumentID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "document_id", r.PathValue("document_id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind document_id", err)
	}
	return id, nil
}

func bindOptionalBool(r *http.Request, name string) (bool, error) {
	var value bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &value); err != nil {
		return false, domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	return value, nil
}

func bindOptionalString(r *http.Request, name string) (string, error) {
	var value string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &value); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	return value, nil
}
