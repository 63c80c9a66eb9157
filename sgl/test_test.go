package sgl_test

import (
	"github.com/usnistgov/symoffload/core/testenv"
)

var makeAR = testenv.MakeAR
