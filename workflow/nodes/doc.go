// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

/*
Package nodes 提供 FlowMesh 的内置节点类型。

内置节点通过 RegisterBuiltins 一次性注册到节点注册表：

  - start / webhook / schedule_trigger — 触发类节点，透传或包装触发数据
  - function                          — 声明式数据变换（大小写、赋值、重命名）
  - http_request                      — 带上下文的出站 HTTP 调用
  - merge / split                     — 汇聚上游输出 / 透传分支
  - llm_router                        — 多供应商 LLM 路由（优先级、轮询、成本）
  - memory                            — 会话上下文存取（内存或 Redis 后端）
  - blockchain_monitor                — 链上只读查询（区块、Gas、余额）
  - orchestrator                      — Agent 池编排（生成、派发、状态、终止）

每个节点实现 workflow.Definition + workflow.Instance 契约：Configure
负责参数校验（返回 ConfigError），Execute 在引擎给定的上下文内运行。
带外部依赖的节点（HTTP 客户端、LLM 供应商、链上 RPC、存储后端）均可
注入替身，缺省时退化为内置的模拟实现。
*/
package nodes
