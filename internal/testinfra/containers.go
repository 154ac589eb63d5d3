// This file is part of NNTSC.
//
// Copyright (C) 2013-2026 The University of Waikato, Hamilton, New Zealand.
//
// This code has been developed by the WAND Network Research Group at the
// University of Waikato. For further information please see
// http://www.wand.net.nz/
//
// NNTSC is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 2 as
// published by the Free Software Foundation.

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipIfNoDocker skips the test if the Docker daemon is not reachable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if !IsDockerAvailable() {
		t.Skip("skipping: Docker not available")
	}
}

// IsDockerAvailable reports whether a Docker daemon answers `docker info`.
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// PostgresContainer is a disposable Postgres instance for store tests.
type PostgresContainer struct {
	testcontainers.Container
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// NewPostgresContainer starts a Postgres 15 container and waits for it to
// accept connections.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	const (
		dbName = "nntsc_test"
		dbUser = "nntsc_test"
		dbPass = "nntsc_test"
	)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       dbName,
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPass,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("get postgres port: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		Database:  dbName,
		User:      dbUser,
		Password:  dbPass,
	}, nil
}

// RabbitMQContainer is a disposable broker instance for broker-consumer
// tests.
type RabbitMQContainer struct {
	testcontainers.Container
	Host string
	Port int
}

// NewRabbitMQContainer starts a RabbitMQ container and waits for the AMQP
// port to accept connections.
func NewRabbitMQContainer(ctx context.Context) (*RabbitMQContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start rabbitmq container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get rabbitmq host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5672/tcp")
	if err != nil {
		return nil, fmt.Errorf("get rabbitmq port: %w", err)
	}

	return &RabbitMQContainer{Container: container, Host: host, Port: port.Int()}, nil
}

// CleanupContainer terminates container, logging (not failing) on error.
func CleanupContainer(t *testing.T, ctx context.Context, container testcontainers.Container) {
	t.Helper()
	if container == nil {
		return
	}
	if err := container.Terminate(ctx); err != nil {
		t.Logf("warning: failed to terminate container: %v", err)
	}
}
