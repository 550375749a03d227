package service

import (
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

const (
	maxNameLen     = 100
	maxSenderLen   = 100
	maxContentLen  = 10000
	maxFileBytes   = 5 * 1024 * 1024
	maxDisplayLen  = 200
	maxAvatarLen   = 2000
	maxBioLen      = 1000
	maxStatusLen   = 200
	maxMetadataLen = 10 * 1024
)

func validateName(field, v string) error {
	n := len([]rune(v))
	if n == 0 {
		return fmt.Errorf("%s must not be empty: %w", field, domain.ErrInvalidInput)
	}
	if n > maxNameLen {
		return fmt.Errorf("%s exceeds %d characters: %w", field, maxNameLen, domain.ErrInvalidInput)
	}
	return nil
}

func validateSender(sender string) error {
	return validateName("sender", sender)
}

func validateContent(content string) error {
	n := len([]rune(content))
	if n == 0 {
		return fmt.Errorf("content must not be empty: %w", domain.ErrInvalidInput)
	}
	if n > maxContentLen {
		return fmt.Errorf("content exceeds %d characters: %w", maxContentLen, domain.ErrTooLarge)
	}
	return nil
}

func validateSenderType(st *string) error {
	if st == nil || *st == "" {
		return nil
	}
	if *st != domain.SenderTypeAgent && *st != domain.SenderTypeHuman {
		return fmt.Errorf("sender_type must be %q or %q: %w",
			domain.SenderTypeAgent, domain.SenderTypeHuman, domain.ErrInvalidInput)
	}
	return nil
}

func validateOptLen(field string, v *string, max int) error {
	if v == nil {
		return nil
	}
	if len([]rune(*v)) > max {
		return fmt.Errorf("%s exceeds %d characters: %w", field, max, domain.ErrInvalidInput)
	}
	return nil
}

// normalizeOpt maps empty strings to nil so "" and absent behave the same.
func normalizeOpt(v *string) *string {
	if v != nil && *v == "" {
		return nil
	}
	return v
}
