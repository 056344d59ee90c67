/*
Copyright 2021-2024 Gravitational, Inc.

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

// Package certs parses the CertificateInfo the broker hands back from
// `ready`/`unmanaged` into a tls.Certificate for the local HTTPS server.
// There is exactly one keypair here and nothing to verify it against —
// the broker is the identity.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"

	"github.com/gravitational/trace"
)

// Info mirrors the broker's CertificateInfo payload.
type Info struct {
	Key         string `json:"private_key"`
	Certificate string `json:"server_certificate"`
	Password    string `json:"password"`
	Ciphers     string `json:"ciphers"`
}

// ToTLSCertificate decrypts (if Password is set) and parses Info into a
// tls.Certificate ready to hand to an http.Server.
func (i Info) ToTLSCertificate() (tls.Certificate, error) {
	keyPEM := []byte(i.Key)
	if i.Password != "" {
		decrypted, err := decryptPEMBlock(keyPEM, i.Password)
		if err != nil {
			return tls.Certificate{}, trace.Wrap(err, "decrypting server private key")
		}
		keyPEM = decrypted
	}

	cert, err := tls.X509KeyPair([]byte(i.Certificate), keyPEM)
	if err != nil {
		return tls.Certificate{}, trace.Wrap(err, "parsing server certificate/key pair")
	}
	return cert, nil
}

// Leaf parses and returns the leaf x509 certificate, for logging/inspection.
func (i Info) Leaf() (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(i.Certificate))
	if block == nil {
		return nil, trace.BadParameter("no PEM block found in server certificate")
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return leaf, nil
}

// IsZero reports whether i carries no certificate material at all.
func (i Info) IsZero() bool {
	return i.Key == "" && i.Certificate == ""
}

func decryptPEMBlock(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, trace.BadParameter("no PEM block found in private key")
	}
	//nolint:staticcheck // broker-supplied legacy PEM encryption, kept for interop
	der, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
