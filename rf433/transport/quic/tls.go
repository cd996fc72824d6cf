package quic

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

// ALPN names the relay framing spoken on every stream.
const ALPN = "rf433/1"

const (
	repeaterName = "rf433-repeater"
	gatewayName  = "rf433-gateway"

	// Certificates are throwaway and regenerated per process.
	certLifetime = 24 * time.Hour
	clockSkew    = time.Hour
)

// ephemeralCert creates an ed25519 key and a certificate for it that is
// valid for one usage.
func ephemeralCert(name string, usage x509.ExtKeyUsage) (tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}
	now := time.Now()
	tpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: name, Organization: []string{"rf433"}},
		DNSNames:              []string{name},
		NotBefore:             now.Add(-clockSkew),
		NotAfter:              now.Add(certLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{usage},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, pub, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}

// NewServerTLSConfig is used by repeaters. Gateways are not asked for a
// certificate: relayed packets carry their own digest and are verified by
// the repeater's authenticator, never by the connection.
func NewServerTLSConfig() (*tls.Config, error) {
	cert, err := ephemeralCert(repeaterName, x509.ExtKeyUsageServerAuth)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{ALPN},
	}, nil
}

// NewClientTLSConfig is used by gateways dialing repeaters. The repeater
// certificate is self-signed and not checked, for the same reason.
func NewClientTLSConfig() (*tls.Config, error) {
	cert, err := ephemeralCert(gatewayName, x509.ExtKeyUsageClientAuth)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ServerName:         repeaterName,
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: true,
	}, nil
}
