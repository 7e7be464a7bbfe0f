//go:build requests || all
// +build requests all

package modules

import "github.com/eclipsabot/eclipsa/modules/requests"

func init() {
	Add(&requests.Module{})
}
