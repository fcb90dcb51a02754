package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"refiling/internal/platform/config"
)

// Fixed regulator endpoints per environment. The configured host overrides
// these for local testing against a stand-in server.
const (
	sandboxHost    = "bsa-sandbox.drop.example.gov"
	productionHost = "bsa.drop.example.gov"
)

const (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

// SFTPClient is the live Transport Client. Every operation dials a fresh
// session: the drop box closes idle connections aggressively and the call
// volume does not justify pooling.
type SFTPClient struct {
	addr        string
	sshConfig   *ssh.ClientConfig
	inboundDir  string
	outboundDir string
}

func NewSFTP(cfg config.Config) (*SFTPClient, error) {
	host := cfg.SFTPHost
	if host == "" {
		switch cfg.Environment {
		case config.EnvProduction:
			host = productionHost
		default:
			host = sandboxHost
		}
	}
	if cfg.SFTPUser == "" {
		return nil, fmt.Errorf("sftp transport requires a user")
	}

	return &SFTPClient{
		addr: net.JoinHostPort(host, fmt.Sprintf("%d", cfg.SFTPPort)),
		sshConfig: &ssh.ClientConfig{
			User: cfg.SFTPUser,
			Auth: []ssh.AuthMethod{ssh.Password(cfg.SFTPPassword)},
			// The drop box publishes rotating host keys out of band; pinning
			// is handled at the network boundary.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         cfg.DialTimeout,
		},
		inboundDir:  cfg.InboundDir,
		outboundDir: cfg.OutboundDir,
	}, nil
}

func (c *SFTPClient) Name() string {
	return "sftp"
}

// connect dials with bounded retries and short backoff before surfacing a
// transport error. Only connection failures are retried here; operation
// failures surface immediately.
func (c *SFTPClient) connect(ctx context.Context) (*sftp.Client, func(), error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, NewError("connect", err)
		}

		sshClient, err := ssh.Dial("tcp", c.addr, c.sshConfig)
		if err != nil {
			lastErr = err
			if attempt < connectAttempts {
				select {
				case <-time.After(connectBackoff):
				case <-ctx.Done():
					return nil, nil, NewError("connect", ctx.Err())
				}
			}
			continue
		}

		sftpClient, err := sftp.NewClient(sshClient)
		if err != nil {
			sshClient.Close()
			lastErr = err
			continue
		}

		closer := func() {
			sftpClient.Close()
			sshClient.Close()
		}
		return sftpClient, closer, nil
	}
	return nil, nil, NewError("connect", fmt.Errorf("after %d attempts: %w", connectAttempts, lastErr))
}

func (c *SFTPClient) Upload(ctx context.Context, filename string, payload []byte) error {
	client, closeConn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	remote := path.Join(c.inboundDir, filename)
	f, err := client.Create(remote)
	if err != nil {
		return NewError("upload", fmt.Errorf("create %s: %w", remote, err))
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return NewError("upload", fmt.Errorf("write %s: %w", remote, err))
	}
	if err := f.Close(); err != nil {
		return NewError("upload", fmt.Errorf("close %s: %w", remote, err))
	}
	return nil
}

func (c *SFTPClient) List(ctx context.Context, prefix string) ([]string, error) {
	client, closeConn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	entries, err := client.ReadDir(c.outboundDir)
	if err != nil {
		return nil, NewError("list", fmt.Errorf("read %s: %w", c.outboundDir, err))
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (c *SFTPClient) Download(ctx context.Context, filename string) ([]byte, error) {
	client, closeConn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	remote := path.Join(c.outboundDir, filename)
	f, err := client.Open(remote)
	if err != nil {
		return nil, NewError("download", fmt.Errorf("open %s: %w", remote, err))
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		return nil, NewError("download", fmt.Errorf("read %s: %w", remote, err))
	}
	return payload, nil
}
