package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPStore writes objects to a directory on an FTP server that is also
// exposed over HTTP at baseURL. A single control connection is shared and
// serialised; it is dialled lazily and redialled once when it has dropped.
type FTPStore struct {
	addr     string
	user     string
	password string
	baseURL  string
	timeout  time.Duration

	mu   sync.Mutex
	conn *ftp.ServerConn
}

// NewFTPStore creates a store for the server at host:port.
func NewFTPStore(host, port, user, password, baseURL string, timeout time.Duration) *FTPStore {
	return &FTPStore{
		addr:     net.JoinHostPort(host, port),
		user:     user,
		password: password,
		baseURL:  baseURL,
		timeout:  timeout,
	}
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP: %w", err)
	}
	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to login to FTP: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// withConn runs fn on the shared connection. When a reused connection turns
// out to be dead, it is redialled once; FTP replies such as 550 are returned
// as they are.
func (s *FTPStore) withConn(ctx context.Context, fn func(*ftp.ServerConn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reused := s.conn != nil
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	err = fn(conn)
	if err == nil || !reused || !isConnError(err) {
		return err
	}

	_ = conn.Quit()
	s.conn = nil
	conn, dialErr := s.connect(ctx)
	if dialErr != nil {
		return fmt.Errorf("%v (redial: %w)", err, dialErr)
	}
	return fn(conn)
}

// isConnError reports whether err came from the control connection rather
// than from a server reply.
func isConnError(err error) bool {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		return false
	}
	var netErr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &netErr)
}

// Put stores data at key. FTP has no per-object metadata, so opts are ignored.
func (s *FTPStore) Put(ctx context.Context, key string, data []byte, _ PutOptions) error {
	return s.withConn(ctx, func(conn *ftp.ServerConn) error {
		if err := conn.Stor(key, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to upload file: %w", err)
		}
		return nil
	})
}

// Delete removes key from the server.
func (s *FTPStore) Delete(ctx context.Context, key string) error {
	return s.withConn(ctx, func(conn *ftp.ServerConn) error {
		if err := conn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	})
}

// PublicURL generates the full URL for a file
func (s *FTPStore) PublicURL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Close closes the FTP connection
func (s *FTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	return err
}
