/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package actortypes

import (
	"net"
	"strings"
)

// InterfaceInfo describes one network interface as reported to the broker.
type InterfaceInfo struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}

var zeroMAC = "00:00:00:00:00:00"

var linkLocal = func() *net.IPNet {
	_, n, _ := net.ParseCIDR("169.254.0.0/16")
	return n
}()

// IsValid reports whether i passes the filters every platform backend
// applies at the source: no null/zero MAC, non-empty IP, not link-local.
func (i InterfaceInfo) IsValid() bool {
	if i.MAC == "" || strings.EqualFold(i.MAC, zeroMAC) {
		return false
	}
	if i.IP == "" {
		return false
	}
	ip := net.ParseIP(i.IP)
	if ip == nil {
		return false
	}
	if linkLocal.Contains(ip) {
		return false
	}
	return true
}

// InRestrictedNet reports whether i's IP falls inside net, or true if net
// is nil (no restriction configured).
func (i InterfaceInfo) InRestrictedNet(restrict *net.IPNet) bool {
	if restrict == nil {
		return true
	}
	ip := net.ParseIP(i.IP)
	if ip == nil {
		return false
	}
	return restrict.Contains(ip)
}

// FilterInterfaces applies IsValid and, if restrict is non-nil,
// InRestrictedNet to all, in order.
func FilterInterfaces(all []InterfaceInfo, restrict *net.IPNet) []InterfaceInfo {
	out := make([]InterfaceInfo, 0, len(all))
	for _, iface := range all {
		if !iface.IsValid() {
			continue
		}
		if !iface.InRestrictedNet(restrict) {
			continue
		}
		out = append(out, iface)
	}
	return out
}
