//go:build unix

/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xengine

import (
	"syscall"

	"github.com/michaelquigley/pfxlog"
	"golang.org/x/sys/unix"
)

// receiveBufferControl sets SO_RCVBUF on the listening socket, accepted connections inherit it. The kernel may
// clamp or double the value and a failure is only logged.
func receiveBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size); err != nil {
				pfxlog.Logger().Warnf("could not set %s to %d on %s: %v", ConfigReceiveBufferSize, size, address, err)
			}
		})
	}
}
