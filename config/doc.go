/*
Package config 负责服务配置的完整加载流程。

配置按 "默认值 -> YAML 文件 -> 环境变量" 的优先级合并，前缀固定为
MUKOKO_。

# 核心结构

  - Config: 顶层配置聚合，涵盖 Server、Store、Cache、Providers、
    RateLimit、Log、Telemetry。
  - Loader: 配置加载器，支持 Builder 模式链式设置文件路径、环境变量
    前缀与自定义验证器。

# 使用示例

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		Load()
*/
package config
