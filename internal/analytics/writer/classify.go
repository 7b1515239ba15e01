package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// classify splits a failed insert of n rows into positions worth resending
// and positions rejected for good. A request-level error applies to every row.
func classify(err error, n int) (retry []int, rejected map[int]error) {
	rejected = map[int]error{}

	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) && len(rowErrs) > 0 {
		for _, rowErr := range rowErrs {
			if rowErr.RowIndex < 0 || rowErr.RowIndex >= n {
				continue
			}
			if isTransient(rowErr.Errors) {
				retry = append(retry, rowErr.RowIndex)
			} else {
				rejected[rowErr.RowIndex] = rowErr.Errors
			}
		}
		return retry, rejected
	}

	if isTransient(err) {
		for i := 0; i < n; i++ {
			retry = append(retry, i)
		}
		return retry, rejected
	}
	for i := 0; i < n; i++ {
		rejected[i] = err
	}
	return nil, rejected
}

// isTransient reports whether every error inside err is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isTransient(inner) {
				return false
			}
		}
		return true
	}

	// "stopped" rows were valid but held back by an invalid neighbour.
	var rowErr *cbigquery.Error
	if errors.As(err, &rowErr) {
		return transientReason(rowErr.Reason) || rowErr.Reason == "stopped"
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		for _, item := range apiErr.Errors {
			if transientReason(item.Reason) {
				return true
			}
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func transientReason(reason string) bool {
	switch reason {
	case "backendError", "internalError", "rateLimitExceeded", "timeout":
		return true
	}
	return false
}
