package serverconfig

import (
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// statusFor maps a Kubernetes API error to the HTTP status callers see.
func statusFor(err error) int {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		if code := status.Status().Code; code != 0 {
			return int(code)
		}
	}
	return http.StatusInternalServerError
}
