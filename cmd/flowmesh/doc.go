// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

/*
flowmesh 守护进程入口。

# 命令

	flowmesh serve                       # 启动服务
	flowmesh serve --config config.yaml  # 指定配置文件
	flowmesh version                     # 显示版本信息
	flowmesh health                      # 对运行中的实例做健康检查

serve 启动两个监听端口：API 端口（默认 :8080）提供健康检查与
工作流管理/执行接口，metrics 端口（默认 :9090）暴露 Prometheus 指标。
*/
package main
