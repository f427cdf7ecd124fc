package config

import (
    "github.com/fsnotify/fsnotify"
    "go.uber.org/zap"
)

// Watch loads the configuration at path and calls fn with every valid
// revision written to the file afterwards. Invalid revisions are logged and
// skipped. The initial configuration is returned.
func Watch(path string, fn func(*Config)) (*Config, error) {
    v, err := open(path)
    if err != nil { return nil, err }
    cfg, err := decode(v)
    if err != nil { return nil, err }
    if v.ConfigFileUsed() == "" { return cfg, nil }

    v.OnConfigChange(func(e fsnotify.Event) {
        if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) { return }
        next, err := decode(v)
        if err != nil {
            zap.L().Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
            return
        }
        zap.L().Info("config reloaded", zap.String("file", e.Name))
        fn(next)
    })
    v.WatchConfig()
    return cfg, nil
}
