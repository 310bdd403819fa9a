package storage

import (
	"context"
	"fmt"

	"Sonora/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听上传目录，发现媒体文件被外部删除或改名时回调
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *LocalStore
	onRemove func(key string)
}

// NewWatcher watches every directory in dirs. onRemove receives the storage key of the vanished file.
func NewWatcher(store *LocalStore, dirs []string, onRemove func(key string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监听器失败: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("监听目录 %s 失败: %w", dir, err)
		}
	}
	return &Watcher{watcher: w, store: store, onRemove: onRemove}, nil
}

// Run 处理事件直到 ctx 取消或监听器关闭
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := w.store.Key(event.Name)
			if !ok {
				continue
			}
			w.onRemove(key)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Upload watcher error", logger.ErrorField(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
