//go:build contest || all
// +build contest all

package modules

import "github.com/eclipsabot/eclipsa/modules/contest"

func init() {
	Add(&contest.Module{})
}
