// Package format renders typed results and errors into protocol payloads:
// JSON documents for resources, plain-text blocks for tools, and a fixed
// category/status pair for every error kind.
package format

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"

	"brokerdesk/internal/domain"
)

// MIMEJSON is the content type of every resource payload.
const MIMEJSON = "application/json"

// JSON encodes v as indented JSON using encoding/json compatible rules.
func JSON(v any) ([]byte, error) {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding response")
	}
	return b, nil
}

// ErrorInfo is the caller-visible description of a failure.
type ErrorInfo struct {
	Category string     `json:"category"`
	Code     codes.Code `json:"code"`
	Field    string     `json:"field,omitempty"`
	Message  string     `json:"message"`
}

var categories = map[domain.Kind]codes.Code{
	domain.KindInvalidArgument: codes.InvalidArgument,
	domain.KindNotFound:        codes.NotFound,
	domain.KindConflict:        codes.FailedPrecondition,
	domain.KindUpstream:        codes.Unavailable,
	domain.KindConfiguration:   codes.Internal,
}

// Code returns the canonical status code for kind.
func Code(kind domain.Kind) codes.Code {
	if c, ok := categories[kind]; ok {
		return c
	}
	return codes.Unknown
}

// Error describes err for the caller. Only the kind, the field and the
// message are exposed.
func Error(err error) ErrorInfo {
	var de *domain.Error
	if !errors.As(err, &de) {
		return ErrorInfo{
			Category: string(domain.KindUpstream),
			Code:     codes.Unavailable,
			Message:  "brokerage request failed",
		}
	}
	return ErrorInfo{
		Category: string(de.Kind),
		Code:     Code(de.Kind),
		Field:    de.Field,
		Message:  de.Message,
	}
}

// ErrorText renders err as a single line for tool results.
func ErrorText(err error) string {
	info := Error(err)
	msg := info.Message
	if info.Field != "" {
		msg = info.Field + ": " + msg
	}
	return "Error (" + info.Category + "): " + msg
}
