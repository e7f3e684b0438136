// Copyright (c) FlowMesh Authors.
// Licensed under the MIT License.

/*
Package workflow 提供工作流编排与执行引擎。

# 概述

workflow 包实现了 FlowMesh 的核心：以有向无环图描述的工作流，按拓扑顺序
依次执行异构节点（LLM 调用、链上查询、HTTP 请求、Agent 任务等），
首个失败即终止运行并返回已完成节点的执行轨迹。

# 核心接口与类型

  - Definition / Instance — 节点插件契约（无状态工厂 + 可配置实例）
  - Registry              — 节点类型注册表（读写锁保护）
  - Workflow / Connection — 图模型：节点映射 + 有序连接列表
  - ResolveOrder          — Kahn 拓扑排序（字典序决定并列节点顺序，含环检测）
  - Store                 — 内存工作流存储（CRUD，读取返回深拷贝）
  - Engine                — 执行引擎（请求队列 + 工作池，单次运行内严格串行）
  - ExecutionContext      — 单次运行的共享上下文（触发数据 + 只增输出表）
  - ExecutionResult       — 终态结果（节点轨迹、聚合输出、错误信息）

# 执行语义

  - 工作流仅在 Active 状态下执行，定义在出队时快照
  - 环或非法连接在任何节点执行前即失败（配置错误）
  - 禁用节点被跳过，不产生 NodeExecution 记录
  - 节点超时为硬语义：超时记为 Timeout 错误并终止本次运行
  - 调用方总能收到终态结果；响应通道被放弃仅记日志，不影响引擎
*/
package workflow
