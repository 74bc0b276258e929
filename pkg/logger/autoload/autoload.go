// Package autoload initializes the global logger from the environment as a
// blank-import side effect:
//
//	import _ "github.com/openvend/vendsim/pkg/logger/autoload"
package autoload

import (
	configx "github.com/openvend/vendsim/pkg/config"
	logx "github.com/openvend/vendsim/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
