package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsTestSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (s *UtilsTestSuite) TestGetFromEnv() {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		want         string
	}{
		{name: "value from environment", envValue: "env-value", defaultValue: "default-value", want: "env-value"},
		{name: "default when unset", defaultValue: "default-value", want: "default-value"},
		{name: "default when empty", envValue: "", defaultValue: "default-value", want: "default-value"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			if tt.envValue != "" {
				os.Setenv("TEST_STRING_KEY", tt.envValue)
				defer os.Unsetenv("TEST_STRING_KEY")
			}
			s.Equal(tt.want, GetFromEnv("TEST_STRING_KEY", tt.defaultValue))
		})
	}
}

func (s *UtilsTestSuite) TestGetDurationFromEnv() {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "parses duration string", envValue: "90s", want: 90 * time.Second},
		{name: "default when unset", want: 15 * time.Minute},
		{name: "default on invalid value", envValue: "soon", want: 15 * time.Minute},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			if tt.envValue != "" {
				os.Setenv("TEST_DURATION_KEY", tt.envValue)
				defer os.Unsetenv("TEST_DURATION_KEY")
			}
			s.Equal(tt.want, GetDurationFromEnv("TEST_DURATION_KEY", 15*time.Minute))
		})
	}
}

func (s *UtilsTestSuite) TestGetListFromEnv() {
	tests := []struct {
		name     string
		envValue string
		want     []string
	}{
		{name: "single entry", envValue: "banking", want: []string{"banking"}},
		{name: "trims whitespace", envValue: "banking, insurance ,claims", want: []string{"banking", "insurance", "claims"}},
		{name: "drops empty entries", envValue: "banking,,insurance,", want: []string{"banking", "insurance"}},
		{name: "nil when unset", want: nil},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			if tt.envValue != "" {
				os.Setenv("TEST_LIST_KEY", tt.envValue)
				defer os.Unsetenv("TEST_LIST_KEY")
			}
			s.Equal(tt.want, GetListFromEnv("TEST_LIST_KEY"))
		})
	}
}

func (s *UtilsTestSuite) TestQualifyIdentity() {
	tests := []struct {
		name   string
		author string
		want   string
	}{
		{name: "bare identity", author: "abc123", want: "user_id:abc123"},
		{name: "whatsapp address", author: "whatsapp:+573001112233", want: "whatsapp:+573001112233"},
		{name: "already qualified", author: "user_id:abc123", want: "user_id:abc123"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, QualifyIdentity(tt.author))
		})
	}
}
