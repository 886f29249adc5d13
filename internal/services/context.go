package services

import (
	"errors"
	"net/http"
	"strconv"
)

// CurrentUserID reads the authenticated user id set by the auth middleware.
func CurrentUserID(r *http.Request) (int, error) {
	raw, ok := r.Context().Value("userID").(string)
	if !ok || raw == "" {
		return 0, errors.New("missing authenticated user")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("malformed authenticated user")
	}
	return id, nil
}
