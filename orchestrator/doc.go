// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

/*
Package orchestrator 提供多 Agent 协调池。

Pool 管理一组自治的类型化 Agent（LLM 路由、记忆管理、链上监控、网络优化、
任务编排），按协调策略将任务分发到空闲且能力匹配的 Agent 上：

  - Sequential   — 按 id 顺序逐个执行
  - Parallel     — errgroup 并发扇出，汇总各 Agent 的结果与错误
  - Pipeline     — 前一 Agent 的输出作为后一 Agent 的输入
  - Adaptive     — 任务声明可并行且 Agent 多于一个时并行，否则串行
  - LoadBalanced — 仅调度执行次数最少的 Agent

Agent 级错误按 Agent 收集，不会中止兄弟 Agent —— 这与工作流级的
快速失败互为对照：两者属于不同的故障域。池内事件总线、滑动窗口健康
评估与协调指标一并由本包提供。
*/
package orchestrator
