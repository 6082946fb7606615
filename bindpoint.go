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
	"context"
	"crypto/tls"
	"net"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/identity"
	transporttls "github.com/openziti/transport/v2/tls"
	"github.com/pkg/errors"
)

const (
	MinTLSVersion = tls.VersionTLS12
	MaxTLSVersion = tls.VersionTLS13

	tlsServerName = "xengine"
)

// BindPoint provides the listener a Server accepts connections on.
type BindPoint interface {
	Listen(ctx context.Context) (net.Listener, error)
	Address() string // the host:port bound
	TLS() bool
	Close()
}

// NewBindPoint selects the bind point for config: TLS when an identity is configured, plain TCP otherwise. Loading
// the identity reads key material from disk but opens no sockets.
func NewBindPoint(config *Config) (BindPoint, error) {
	if config.Identity == nil {
		return &tcpBindPoint{
			address:           config.Address(),
			receiveBufferSize: config.ReceiveBufferSize,
		}, nil
	}

	id, err := identity.LoadIdentity(*config.Identity)
	if err != nil {
		return nil, errors.Wrap(err, "could not load identity")
	}

	if err := id.WatchFiles(); err != nil {
		pfxlog.Logger().Warnf("could not enable file watching on identity: %v", err)
	}

	if config.ReceiveBufferSize > 0 {
		pfxlog.Logger().Debugf("%s is not applied to TLS listeners", ConfigReceiveBufferSize)
	}

	return &identityBindPoint{
		address:  config.Address(),
		identity: id,
	}, nil
}

type tcpBindPoint struct {
	address           string
	receiveBufferSize int
}

func (bindPoint *tcpBindPoint) Listen(ctx context.Context) (net.Listener, error) {
	listenConfig := &net.ListenConfig{}
	if bindPoint.receiveBufferSize > 0 {
		listenConfig.Control = receiveBufferControl(bindPoint.receiveBufferSize)
	}
	return listenConfig.Listen(ctx, "tcp", bindPoint.address)
}

func (bindPoint *tcpBindPoint) Address() string {
	return bindPoint.address
}

func (bindPoint *tcpBindPoint) TLS() bool {
	return false
}

func (bindPoint *tcpBindPoint) Close() {}

type identityBindPoint struct {
	address  string
	identity identity.Identity
}

func (bindPoint *identityBindPoint) Listen(_ context.Context) (net.Listener, error) {
	tlsConfig := bindPoint.identity.ServerTLSConfig()
	tlsConfig.ClientAuth = tls.RequestClientCert
	tlsConfig.MinVersion = MinTLSVersion
	tlsConfig.MaxVersion = MaxTLSVersion
	// make sure to listen to the expected protocols
	tlsConfig.NextProtos = append(tlsConfig.NextProtos, "h2", "http/1.1", "")

	return transporttls.ListenTLS(bindPoint.address, tlsServerName, tlsConfig)
}

func (bindPoint *identityBindPoint) Address() string {
	return bindPoint.address
}

func (bindPoint *identityBindPoint) TLS() bool {
	return true
}

func (bindPoint *identityBindPoint) Close() {
	bindPoint.identity.StopWatchingFiles()
}
