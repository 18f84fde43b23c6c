package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// validator provides a type to perform model validation after
// decoding.
type validator interface {
	Validate() error
}

// Decode reads the body of an HTTP request looking for a JSON
// document. The body is decoded into the provided value. If the value
// implements the validator interface, it is executed.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if v, ok := val.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}
