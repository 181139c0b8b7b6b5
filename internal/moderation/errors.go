package moderation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrBatchTooLarge      = errors.New("batch too large")
	ErrNotFound           = errors.New("not found")
	ErrRemoteActionFailed = errors.New("remote action failed")
	ErrNothingToDo        = errors.New("nothing to do")
	ErrAlreadyApplied     = errors.New("already applied")
	ErrInvalidInput       = errors.New("invalid input")
)

// Rejection aborts a command before any mutation. Message is shown to the invoker as is.
type Rejection struct {
	Kind    error
	Message string
}

func (r *Rejection) Error() string { return r.Message }

func (r *Rejection) Unwrap() error { return r.Kind }

func reject(kind error, format string, args ...any) error {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

type BatchTooLargeError struct {
	Size int
	Max  int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("%d targets exceeds the limit of %d", e.Size, e.Max)
}

func (e *BatchTooLargeError) Unwrap() error { return ErrBatchTooLarge }

type DeniedError struct {
	TargetID string
	Cause    DenyCause
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("cannot act on %s: %s", e.TargetID, e.Cause)
}

func (e *DeniedError) Unwrap() error { return ErrPermissionDenied }

type RemoteKind int

const (
	RemoteHTTP RemoteKind = iota
	RemoteForbidden
	RemoteNotFound
	RemoteRateLimited
)

func (k RemoteKind) String() string {
	switch k {
	case RemoteForbidden:
		return "forbidden"
	case RemoteNotFound:
		return "not found"
	case RemoteRateLimited:
		return "rate limited"
	default:
		return "http error"
	}
}

// RemoteError is a failed call against Discord, classified by cause.
type RemoteError struct {
	Kind   RemoteKind
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	errs := []error{ErrRemoteActionFailed, e.Err}
	if e.Kind == RemoteNotFound {
		errs = append(errs, ErrNotFound)
	}
	return errs
}

// ClassifyRemote wraps discordgo REST failures into a RemoteError. Other errors pass through.
func ClassifyRemote(err error) error {
	if err == nil {
		return nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}

	var rateLimited *discordgo.RateLimitError
	if errors.As(err, &rateLimited) {
		return &RemoteError{Kind: RemoteRateLimited, Status: http.StatusTooManyRequests, Err: err}
	}

	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	status := 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	code := 0
	if rest.Message != nil {
		code = rest.Message.Code
	}

	kind := RemoteHTTP
	switch {
	case status == http.StatusForbidden || code == discordgo.ErrCodeMissingPermissions || code == discordgo.ErrCodeMissingAccess:
		kind = RemoteForbidden
	case status == http.StatusNotFound || code == discordgo.ErrCodeUnknownMember || code == discordgo.ErrCodeUnknownUser ||
		code == discordgo.ErrCodeUnknownBan || code == discordgo.ErrCodeUnknownMessage || code == discordgo.ErrCodeUnknownChannel:
		kind = RemoteNotFound
	case status == http.StatusTooManyRequests:
		kind = RemoteRateLimited
	}
	return &RemoteError{Kind: kind, Status: status, Err: err}
}

// Describe renders a per-target failure for summaries.
func Describe(err error) string {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Cause.String()
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		switch remote.Kind {
		case RemoteForbidden:
			return "missing permissions"
		case RemoteNotFound:
			return "not found"
		case RemoteRateLimited:
			return "rate limited"
		}
		return "request failed"
	}
	if errors.Is(err, ErrAlreadyApplied) {
		return "already applied"
	}
	return err.Error()
}
