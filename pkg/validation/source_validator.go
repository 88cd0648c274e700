package validation

import (
	"net/url"
	"path/filepath"
	"strings"

	apperrors "go-document-forensics/internal/errors"
)

// SourceValidator checks document source locations before any fetch. The
// accepted format depends on the storage backend the service is wired to,
// so validators are built alongside their fetcher.
type SourceValidator interface {
	ValidateSource(source string) error
}

// URLSourceValidator accepts http(s) URLs, optionally restricted to an
// allow-list of schemes and hosts.
type URLSourceValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLSourceValidator creates a validator accepting http and https
// sources from any host.
func NewURLSourceValidator() *URLSourceValidator {
	return &URLSourceValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLSourceValidatorWithOptions creates a validator with custom scheme
// and host allow-lists.
func NewURLSourceValidatorWithOptions(schemes []string, hosts []string) *URLSourceValidator {
	return &URLSourceValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateSource validates a document source URL.
func (v *URLSourceValidator) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewValidationError("document source cannot be empty", nil)
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return apperrors.NewValidationError("invalid document source format", err)
	}

	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("document source scheme not allowed", nil)
	}

	if parsed.Host == "" {
		return apperrors.NewValidationError("document source must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsed.Host) {
		return apperrors.NewValidationError("document source host not allowed", nil)
	}

	return nil
}

func (v *URLSourceValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set.
func (v *URLSourceValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}

// PathSourceValidator accepts file paths under a local storage root. The
// fetcher confines the resolved path; the validator rejects traversal up
// front so callers get a validation error instead of a missing file.
type PathSourceValidator struct{}

// NewPathSourceValidator creates a validator for local file sources.
func NewPathSourceValidator() *PathSourceValidator {
	return &PathSourceValidator{}
}

// ValidateSource validates a document file path.
func (v *PathSourceValidator) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewValidationError("document source cannot be empty", nil)
	}
	if strings.Contains(source, "://") {
		return apperrors.NewValidationError("document source must be a file path, not a URL", nil)
	}
	for _, segment := range strings.Split(filepath.ToSlash(source), "/") {
		if segment == ".." {
			return apperrors.NewValidationError("document source must stay inside the storage root", nil)
		}
	}
	return nil
}

// BlobSourceValidator accepts blob references of the form
// /<container>?blob=<name> used by the Azure fetcher.
type BlobSourceValidator struct{}

// NewBlobSourceValidator creates a validator for blob sources.
func NewBlobSourceValidator() *BlobSourceValidator {
	return &BlobSourceValidator{}
}

// ValidateSource validates a blob reference.
func (v *BlobSourceValidator) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewValidationError("document source cannot be empty", nil)
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return apperrors.NewValidationError("invalid document source format", err)
	}
	if strings.Trim(parsed.Path, "/") == "" {
		return apperrors.NewValidationError("blob source must name a container", nil)
	}
	if parsed.Query().Get("blob") == "" {
		return apperrors.NewValidationError("blob source must carry a blob parameter", nil)
	}
	return nil
}
