package router

import (
	"strings"

	"github.com/google/uuid"
)

// stringPtr returns a trimmed pointer or nil when the input is empty.
func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return stringPtr(id.String())
}

func optionalUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	return uuidPtr(*id)
}

// int64Ptr returns a pointer to the provided value widened to int64.
func int64Ptr(value int) *int64 {
	v := int64(value)
	return &v
}
