// Package version holds the actor's own build version and the assertion
// helper that checks a broker's reported version against a minimum; the
// lifecycle logs a warning when the check fails and carries on.
package version

import (
	"fmt"
	"runtime"

	"github.com/gravitational/trace"
	hcversion "github.com/hashicorp/go-version"
)

// Version is overridden at link time via -ldflags.
var Version = "dev"

// GitRef is overridden at link time via -ldflags.
var GitRef = ""

// Print writes the actor's version banner to stdout, in the same shape as
// every other command in this family prints its own.
func Print(appName string) {
	if GitRef != "" {
		fmt.Printf("%v v%v git:%v %v\n", appName, Version, GitRef, runtime.Version())
		return
	}
	fmt.Printf("%v v%v %v\n", appName, Version, runtime.Version())
}

// AssertBrokerVersion fails if the broker's reported version is below
// minVersion.
func AssertBrokerVersion(brokerVersion, minVersion string) error {
	actual, err := hcversion.NewVersion(brokerVersion)
	if err != nil {
		return trace.Wrap(err)
	}
	required, err := hcversion.NewVersion(minVersion)
	if err != nil {
		return trace.Wrap(err)
	}
	if actual.LessThan(required) {
		return trace.Errorf("broker version %s is less than the minimum supported %s", brokerVersion, minVersion)
	}
	return nil
}
