//go:build metrics || all
// +build metrics all

package modules

import "github.com/eclipsabot/eclipsa/metrics"

func init() {
	Add(&metrics.Module{})
}
