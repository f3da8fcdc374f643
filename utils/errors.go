package utils

import "errors"

var (
	// ErrInvalidAddress is returned before any I/O when an address has no '@'
	// or an empty domain.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrCacheUnavailable wraps connectivity failures of a remote cache backend.
	// The checker treats it as a cache miss.
	ErrCacheUnavailable = errors.New("cache backend unavailable")

	// ErrExternalService covers timeouts, non-2xx responses and malformed
	// payloads from the external validation API. It never leaves the validator.
	ErrExternalService = errors.New("external validation service error")

	// ErrDBProvider is returned for an unknown cache provider name.
	ErrDBProvider = errors.New("unsupported db provider")

	// ErrNoDomainSource is returned by LoadTempDomains when no source list is configured.
	ErrNoDomainSource = errors.New("no temporary domain source configured")
)

var (
	// ErrTemplateWithHTML is returned when a templated send also sets Message.HTML.
	ErrTemplateWithHTML = errors.New("template and html body are mutually exclusive")

	// ErrTemplateDataWithoutTemplate is returned when a message carries
	// template input but no template was named.
	ErrTemplateDataWithoutTemplate = errors.New("template data given without a template")

	// ErrBlockedRecipient is returned when recipient checking is enabled and a
	// recipient is rejected by the checker.
	ErrBlockedRecipient = errors.New("recipient is blocked")
)
