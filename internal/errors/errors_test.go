package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"abtest/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"io", core.NewIOError("x.csv", stderrors.New("no such file")), CodeIOError},
		{"parse", core.NewParseError("x.csv", stderrors.New("bare quote")), CodeParseError},
		{"missing column", core.NewMissingColumnError("group"), CodeSchemaError},
		{"drift", core.NewSchemaDriftError([]string{"Sunday"}), CodeSchemaError},
		{"empty group", core.NewEmptyGroupError("control"), CodePrecondition},
		{"singular", core.NewSingularDesignError([]string{"a", "b"}, 1), CodeConvergenceFailed},
		{"wrapped twice", fmt.Errorf("run: %w", core.ErrNotConverged), CodeConvergenceFailed},
		{"plain", stderrors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestWrap_DerivesCodeFromDomainError(t *testing.T) {
	err := Wrap(core.NewEmptyGroupError("treatment"), "significance test failed")
	assert.Equal(t, CodePrecondition, GetCode(err))
	assert.ErrorIs(t, err, core.ErrEmptyGroup)
	assert.Contains(t, err.Error(), "significance test failed")
	assert.Contains(t, err.Error(), `"treatment"`)
}

func TestWrap_KeepsAppErrorCode(t *testing.T) {
	inner := ConfigInvalid("alpha must be in (0,1)")
	err := Wrapf(inner, "loading %s", "config.yaml")
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(InvalidInput("bad flag")))
	assert.Equal(t, 3, ExitCode(core.NewIOError("a", stderrors.New("b"))))
	assert.Equal(t, 5, ExitCode(Wrap(core.ErrEmptyTable, "x")))
	assert.Equal(t, 1, ExitCode(stderrors.New("boom")))
}
