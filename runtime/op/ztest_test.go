package op_test

import (
	"testing"

	"github.com/brimdata/jsoniq/ztest"
)

func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }
