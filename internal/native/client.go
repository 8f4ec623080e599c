// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package native talks to the payment capability exposed by a native app
// shell. The shell serves a small gRPC service whose messages are
// google.protobuf.Struct values, so no generated stubs are needed on either
// side.
package native

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names served by the shell.
const (
	MethodPay         = "/superapp.NativePayment/Pay"
	MethodGetUserInfo = "/superapp.NativePayment/GetUserInfo"
)

// ErrUnsupported is returned when the shell does not implement a method.
var ErrUnsupported = errors.New("native capability does not support this call")

// PayRequest is the charge handed to the shell.
type PayRequest struct {
	Amount      float64
	Currency    string
	Description string
	Metadata    map[string]any
}

// PayResponse is the shell's answer. Shells report the transaction id under
// either transactionId or id.
type PayResponse struct {
	Status        string
	TransactionID string
	Message       string
	Raw           map[string]any
}

// Options configures Dial.
type Options struct {
	// Insecure disables TLS, for shells listening on loopback.
	Insecure bool
	// Token, when set, is sent as a bearer authorization header.
	Token       string
	DialTimeout time.Duration
}

// Client is a connection to the native payment capability.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// Dial connects to the shell at addr. A missing port defaults to 443.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	// Derive SNI and ensure default port if missing
	host := addr
	target := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	} else {
		target = net.JoinHostPort(addr, "443")
	}

	creds := credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connect native shell: %w", err)
	}

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitReady(dctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect native shell: %w", err)
	}
	return &Client{conn: conn, token: opts.Token}, nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *grpc.ClientConn, token string) *Client {
	return &Client{conn: conn, token: token}
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Pay asks the shell to charge the user.
func (c *Client) Pay(ctx context.Context, req PayRequest) (*PayResponse, error) {
	in, err := structpb.NewStruct(map[string]any{
		"amount":      req.Amount,
		"currency":    req.Currency,
		"description": req.Description,
		"metadata":    orEmpty(req.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("encode pay request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(c.outgoing(ctx), MethodPay, in, out); err != nil {
		return nil, err
	}

	raw := out.AsMap()
	resp := &PayResponse{Raw: raw}
	resp.Status, _ = raw["status"].(string)
	resp.Message, _ = raw["message"].(string)
	if id, _ := raw["transactionId"].(string); id != "" {
		resp.TransactionID = id
	} else {
		resp.TransactionID, _ = raw["id"].(string)
	}
	return resp, nil
}

// GetUserInfo returns the profile of the signed-in user, or ErrUnsupported
// when the shell does not offer it.
func (c *Client) GetUserInfo(ctx context.Context) (map[string]any, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(c.outgoing(ctx), MethodGetUserInfo, &structpb.Struct{}, out); err != nil {
		if status.Code(err) == codes.Unimplemented {
			return nil, ErrUnsupported
		}
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
