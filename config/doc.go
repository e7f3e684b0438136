// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

// Package config 提供 FlowMesh 的配置模型与加载器。
// 加载优先级: 默认值 → YAML 文件 → 环境变量（前缀 FLOWMESH）。
package config
