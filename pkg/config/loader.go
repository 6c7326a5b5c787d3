package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig 加载配置，支持多环境
// env: local, production, test 等；configDir 为空时使用 "config"
// 优先级：base.yaml < <env>.yaml；${VAR} 占位符先查 secrets.env，再查进程环境变量
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	baseConfig, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	envConfig := map[string]interface{}{}
	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, env+".yaml")
		if _, statErr := os.Stat(envFile); statErr == nil {
			envConfig, err = loadYAMLFile(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
		}
	}

	merged := mergeMaps(baseConfig, envConfig)

	secrets := map[string]string{}
	secretsFile := filepath.Join(configDir, "secrets.env")
	if _, statErr := os.Stat(secretsFile); statErr == nil {
		secrets, err = loadEnvFile(secretsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}

	return substituteEnvVars(merged, secrets), nil
}

// Load 读取 CONFIG_ENV / CONFIG_DIR 指定的配置并解码到 out
func Load(out interface{}) error {
	cfgMap, err := LoadConfig(GetConfigEnv(), GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		return err
	}
	return Decode(cfgMap, out)
}

// Decode 把合并后的 map 转成具体的配置结构
func Decode(cfgMap map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile 加载 KEY=VALUE 格式的 .env 文件，忽略空行和注释
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, `'`)
		env[strings.TrimSpace(key)] = value
	}
	return env, scanner.Err()
}

// mergeMaps 递归合并，src 覆盖 dst，不修改入参
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		result[k] = v
	}

	for k, v := range src {
		dstMap, dstIsMap := result[k].(map[string]interface{})
		srcMap, srcIsMap := v.(map[string]interface{})
		if dstIsMap && srcIsMap {
			result[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		result[k] = v
	}
	return result
}

// substituteEnvVars 替换配置中的 ${VAR_NAME} 占位符
func substituteEnvVars(cfg map[string]interface{}, env map[string]string) map[string]interface{} {
	result := make(map[string]interface{}, len(cfg))
	for k, v := range cfg {
		switch val := v.(type) {
		case string:
			result[k] = substituteString(val, env)
		case map[string]interface{}:
			result[k] = substituteEnvVars(val, env)
		default:
			result[k] = v
		}
	}
	return result
}

// substituteString 找不到的占位符原样保留，由调用方校验
func substituteString(s string, env map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			break
		}
		end += start

		b.WriteString(s[:start])
		key := s[start+2 : end]
		if value, ok := env[key]; ok {
			b.WriteString(value)
		} else if value, ok := os.LookupEnv(key); ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

// HasPlaceholder 判断值里是否还残留未替换的 ${VAR}
func HasPlaceholder(s string) bool {
	start := strings.Index(s, "${")
	return start >= 0 && strings.Contains(s[start:], "}")
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（从环境变量 CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
