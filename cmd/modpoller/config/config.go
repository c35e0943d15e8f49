package config

import (
	"modpoller/pkg/gateway"
	"modpoller/pkg/service"
)

type Config struct {
	Mgr        *service.Manager
	GatewayMgr *gateway.Manager
	CertFile   string
	KeyFile    string
}
