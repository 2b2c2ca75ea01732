package events_test

import (
	"github.com/usnistgov/tofino-tm/core/testenv"
)

var makeAR = testenv.MakeAR
