package env

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var cache = make(map[string]string)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// Get reads a config value from the environment. If <key>.file is set the
// value is read from that file instead, which is how container secrets are
// passed in.
func Get(key string) string {
	val, exists := cache[key]
	if exists {
		return val
	}

	filename := viper.GetString(key + ".file")
	if filename == "" {
		return viper.GetString(key)
	}
	val, err := readSecret(filename)
	if err != nil {
		log.Printf("error reading secret: %s", err.Error())
	}
	//update cache with the full value, so we don't constantly read it
	cache[key] = val
	return val
}

func Set(key string, val string) {
	cache[key] = val
}

func GetOr(key string, def string) string {
	res := Get(key)
	if res == "" {
		return def
	}
	return res
}

func GetBool(key string) bool {
	res := Get(key)
	if res == "" {
		return false
	}
	return cast.ToBool(res)
}

func GetInt(key string) int {
	return cast.ToInt(Get(key))
}

func GetIntOr(key string, def int) int {
	res := GetInt(key)
	if res == 0 {
		return def
	}
	return res
}

// GetDuration parses values like "30s" or "336h". Bare numbers are taken
// as hours, matching how deadlines are configured for this bot.
func GetDuration(key string, def time.Duration) time.Duration {
	res := Get(key)
	if res == "" {
		return def
	}
	d, err := time.ParseDuration(res)
	if err != nil {
		hours := cast.ToInt(res)
		if hours == 0 {
			return def
		}
		return time.Duration(hours) * time.Hour
	}
	return d
}

func GetStringArray(key, separator string) []string {
	val := Get(key)
	if separator == "" {
		separator = ","
	}
	return strings.Split(val, separator)
}

func readSecret(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
