// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"conversation-orchestrator/internal/common/config"
)

// Client wraps the Zeebe gRPC client the orchestration workers poll through.
type Client struct {
	client         zbc.Client
	address        string
	requestTimeout time.Duration
}

// NewClient dials the broker described by cfg and confirms it answers a
// topology request within the request timeout.
func NewClient(cfg config.CamundaConfig) (*Client, error) {
	if cfg.BrokerAddress == "" {
		return nil, fmt.Errorf("zeebe broker address is empty")
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: !cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, address: cfg.BrokerAddress, requestTimeout: timeout}
	if _, err := c.Topology(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Topology returns the number of brokers the gateway reports.
func (c *Client) Topology(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return 0, err
	}
	return len(resp.GetBrokers()), nil
}

// HealthCheck fails when the gateway is unreachable or reports no brokers.
func (c *Client) HealthCheck(ctx context.Context) error {
	brokers, err := c.Topology(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	if brokers == 0 {
		return fmt.Errorf("zeebe gateway %s reports no brokers", c.address)
	}
	return nil
}
