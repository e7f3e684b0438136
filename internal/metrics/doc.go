// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖工作流执行、
节点执行、执行队列与 Agent 协调四个维度。

# 概述

本包通过 Collector 统一注册和记录指标，使用 promauto 工厂注册机制。
构造时可注入自定义 prometheus.Registerer（测试中常用
prometheus.NewRegistry），为 nil 时落到 DefaultRegisterer。

# 指标

  - workflow_executions_total / workflow_execution_duration_seconds：
    按状态与执行模式统计工作流运行。
  - node_executions_total / node_execution_duration_seconds：
    按节点类型与结果统计单节点执行。
  - execution_queue_depth / execution_queue_rejected_total：
    执行队列深度与拒绝计数。
  - agent_tasks_total / agents_active：Agent 任务结果与在管数量。
*/
package metrics
