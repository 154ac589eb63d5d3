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

package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wanduow/nntsc/internal/config"
)

func amqpURL(cfg config.BrokerConfig) string {
	scheme := "amqp"
	if cfg.SSL {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d%s", scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, vhostPath(cfg.VHost))
}

func vhostPath(vhost string) string {
	if vhost == "" || vhost == "/" {
		return "/"
	}
	return "/" + vhost
}

func dial(cfg config.BrokerConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}
