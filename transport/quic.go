package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

const alpnProto = "novanet/1"

// quicEndpoint is the concrete Endpoint backed by quic-go. novanet never
// inspects QUIC internals beyond this file: everywhere else sees only the
// Endpoint/Connection/Stream interfaces above.
type quicEndpoint struct {
	listener *quic.Listener
	tlsConf  *tls.Config
}

// NewQUICEndpoint binds bindAddr and returns an Endpoint ready to Accept
// inbound connections and ConnectTo outbound peers.
func NewQUICEndpoint(bindAddr string) (Endpoint, error) {
	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("transport: generating tls config: %w", err)
	}

	ln, err := quic.ListenAddr(bindAddr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", bindAddr, err)
	}

	return &quicEndpoint{listener: ln, tlsConf: tlsConf}, nil
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  2 * time.Minute,
		KeepAlivePeriod: 15 * time.Second,
	}
}

func (e *quicEndpoint) ConnectTo(ctx context.Context, addr string) (Connection, error) {
	clientTLS := e.tlsConf.Clone()
	clientTLS.InsecureSkipVerify = true // section membership, not the TLS chain, is the trust root (spec §4.D)

	conn, err := quic.DialAddr(ctx, addr, clientTLS, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &quicConnection{conn: conn}, nil
}

func (e *quicEndpoint) Accept(ctx context.Context) (Connection, error) {
	conn, err := e.listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return &quicConnection{conn: conn}, nil
}

func (e *quicEndpoint) IsReachable(ctx context.Context, addr string) bool {
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	conn, err := e.ConnectTo(dialCtx, addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (e *quicEndpoint) Close() error {
	return e.listener.Close()
}

type quicConnection struct {
	conn *quic.Conn
}

func (c *quicConnection) OpenStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream: %w", err)
	}
	return s, nil
}

func (c *quicConnection) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: accept stream: %w", err)
	}
	return s, nil
}

func (c *quicConnection) RemoteAddress() string {
	return c.conn.RemoteAddr().String()
}

func (c *quicConnection) Close() error {
	return c.conn.CloseWithError(0, "closed")
}

// selfSignedTLSConfig mints an ephemeral cert: novanet's trust model lives
// entirely in section membership and BLS signatures (spec §3/§4.D), so the
// TLS layer only needs to provide transport confidentiality, not identity.
func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProto},
	}, nil
}
