package service

import (
	"errors"

	"github.com/wplc/livechat/internal/modules/repo"
)

var (
	ErrMissingSessionID = errors.New("session_id is required")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrSessionNotFound  = repo.ErrSessionNotFound
	ErrSessionUpdate    = errors.New("session could not be updated")
	ErrUnauthorized     = errors.New("operator authentication required")

	// Realtime channel authorization
	ErrInvalidChannel   = errors.New("invalid channel name")
	ErrForbiddenChannel = errors.New("channel not allowed for this caller")

	// ErrFlowStateChanged aborts a flow update whose state moved since it was read.
	ErrFlowStateChanged = errors.New("flow state changed concurrently")

	// Upload validation. Messages are shown to visitors as is.
	ErrNoFile             = errors.New("فایلی ارسال نشده است.")
	ErrFileTooLarge       = errors.New("حجم فایل نمی‌تواند بیشتر از ۱۰ مگابایت باشد.")
	ErrFileTypeNotAllowed = errors.New("نوع فایل مجاز نیست. فایل‌های مجاز: ")
	ErrUnsafeFile         = errors.New("فایل ناامن تشخیص داده شد.")
	ErrFileStoreDisabled  = errors.New("file storage is not configured")
)

// IsValidationError reports whether err is caused by bad caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingSessionID, ErrEmptyMessage,
		ErrNoFile, ErrFileTooLarge, ErrFileTypeNotAllowed, ErrUnsafeFile,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
