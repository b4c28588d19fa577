// Package validator provides a pluggable registry of field validators used
// for CRM contact and company details.
package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ValidatorFunc is the signature for validator functions.
// Takes a value and optional configuration, returns an error if validation fails.
type ValidatorFunc func(value interface{}, config map[string]interface{}) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once

	nonDigits  = regexp.MustCompile(`[^\d]`)
	phoneChars = regexp.MustCompile(`^[\d\s\-().+/x]+$`)
)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry returns a registry with the built-in validators.
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[string]ValidatorFunc)}
	r.registerBuiltins()
	return r
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name string, value interface{}, config map[string]interface{}) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

// List returns all registered validator names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// registerBuiltins registers all built-in validators. Empty strings pass
// every validator; required checks are done by the caller.
func (r *Registry) registerBuiltins() {
	r.Register("email", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		addr, err := mail.ParseAddress(str)
		if err != nil || addr.Address != str {
			return fmt.Errorf("invalid email format")
		}
		return nil
	})

	// Bare host names such as "acme.com" are accepted.
	r.Register("url", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		raw := str
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("URL must use http:// or https://")
		}
		if host := u.Hostname(); host == "" || (!strings.Contains(host, ".") && host != "localhost") {
			return fmt.Errorf("URL must include a host name")
		}
		return nil
	})

	// Digits plus the usual separators, 7-15 digits (E.164 allows 15).
	r.Register("phone", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		if !phoneChars.MatchString(str) {
			return fmt.Errorf("phone number contains invalid characters")
		}
		cleaned := nonDigits.ReplaceAllString(str, "")
		if len(cleaned) < 7 || len(cleaned) > 15 {
			return fmt.Errorf("phone number must have 7-15 digits")
		}
		return nil
	})

	r.Register("length", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		length := len([]rune(str))
		if min, ok := config["min"].(float64); ok && length < int(min) {
			return fmt.Errorf("must be at least %d characters", int(min))
		}
		if max, ok := config["max"].(float64); ok && length > int(max) {
			return fmt.Errorf("must be at most %d characters", int(max))
		}
		return nil
	})

	r.Register("range", func(value interface{}, config map[string]interface{}) error {
		var num float64
		switch v := value.(type) {
		case float64:
			num = v
		case int:
			num = float64(v)
		case int64:
			num = float64(v)
		default:
			return nil
		}
		if min, ok := config["min"].(float64); ok && num < min {
			return fmt.Errorf("must be at least %g", min)
		}
		if max, ok := config["max"].(float64); ok && num > max {
			return fmt.Errorf("must be at most %g", max)
		}
		return nil
	})
}

// Package-level convenience functions

// Register adds a validator to the default registry
func Register(name string, fn ValidatorFunc) {
	GetRegistry().Register(name, fn)
}

// Validate runs a named validator using the default registry
func Validate(name string, value interface{}, config map[string]interface{}) error {
	return GetRegistry().Validate(name, value, config)
}
