package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bindhost", "host":
		return hostTemplate, nil
	case "bindctl", "ctl":
		return ctlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `name = "bindhost"
addr = "127.0.0.1:7420"
admin_addr = "127.0.0.1:7421"
cors_origins = ["http://localhost:3000"]
write_timeout = "15s"
auth_token = ""

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""

[[clients]]
id = "c1"
version = "v1"
creation_date = 100
public_key = "pk"

[[burn_tickets]]
ethereum_address = "0x00000000000000000000000000000000000000aa"
hash = "h1"
nonce = 1

[[burn_tickets]]
ethereum_address = "0x00000000000000000000000000000000000000aa"
hash = "h2"
nonce = 2
`

const ctlTemplate = `addr = "127.0.0.1:7420"
dial_timeout = "5s"
call_timeout = "10s"
max_dial_attempts = 3
auth_token = ""

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
server_name = ""
insecure_skip_verify = false
`
