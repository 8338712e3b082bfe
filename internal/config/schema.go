// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// Schema is the JSON Schema every config file is validated against
// before being decoded, matching the Config struct field for field.
const Schema = `
{
  "type": "object",
  "properties": {
    "node_id": {
      "description": "Explicit node id, or 0 for random assignment.",
      "type": "integer",
      "minimum": 0
    },
    "max_connections": {
      "description": "Upper bound on tracked peers.",
      "type": "integer",
      "minimum": 0
    },
    "multicast_group": {
      "description": "Name of the multicast group to join.",
      "type": "string"
    },
    "multicast_port": {
      "type": "integer"
    },
    "multicast_iface": {
      "type": "string"
    },
    "multicast_ttl": {
      "type": "integer"
    },
    "control_listen_iface": {
      "type": "string"
    },
    "control_listen_port": {
      "type": "integer"
    },
    "log_level": {
      "description": "One of: none, fatal, error, warning, info, comment, debug.",
      "type": "string",
      "enum": ["none", "fatal", "error", "warning", "info", "comment", "debug"]
    },
    "debug_listen_addr": {
      "type": "string"
    },
    "nats": {
      "description": "Configuration for the NATS-backed Transport Adapter.",
      "type": "object",
      "properties": {
        "address": {
          "type": "string"
        },
        "username": {
          "type": "string"
        },
        "password": {
          "type": "string"
        },
        "creds-file-path": {
          "type": "string"
        }
      }
    }
  }
}`
