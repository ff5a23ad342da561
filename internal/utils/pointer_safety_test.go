package utils_test

import (
	"testing"

	"github.com/jrsteele09/recrutech-auth/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestPtrAndValue(t *testing.T) {
	p := utils.Ptr(int64(42))
	require.Equal(t, int64(42), *p)
	require.Equal(t, int64(42), utils.Value(p))

	var missing *string
	require.Equal(t, "", utils.Value(missing))
}
