// Package config 提供 StructFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 STRUCTFLOW）的顺序合并，
// 加载后统一校验。StructuredConfig 可直接转换为补全器、解析器和编码器的选项。
package config
