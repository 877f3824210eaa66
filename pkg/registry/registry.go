// Package registry 提供进程内服务注册：服务名只能注册一次，变更时通知订阅方
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/pkg/logger"
)

var (
	ErrAlreadyRegistered = errors.New("service already registered")
	ErrNotRegistered     = errors.New("service not registered")
)

// ServiceInstance 服务实例
type ServiceInstance struct {
	ServiceName string
	MaxSessions int
	Metadata    map[string]string
}

// ServiceCallback 服务变更回调，registered 为 false 表示已注销
type ServiceCallback func(instance *ServiceInstance, registered bool)

// Registry 服务注册表
type Registry struct {
	mu        sync.RWMutex
	services  map[string]*ServiceInstance
	callbacks []ServiceCallback
}

// New 创建注册表
func New() *Registry {
	return &Registry{
		services: make(map[string]*ServiceInstance),
	}
}

// RegisterService 注册服务
func (r *Registry) RegisterService(instance *ServiceInstance) error {
	if instance.ServiceName == "" || instance.MaxSessions <= 0 {
		return fmt.Errorf("invalid service instance %q (max sessions %d)", instance.ServiceName, instance.MaxSessions)
	}

	r.mu.Lock()
	if _, ok := r.services[instance.ServiceName]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", instance.ServiceName, ErrAlreadyRegistered)
	}
	r.services[instance.ServiceName] = instance
	callbacks := slices.Clone(r.callbacks)
	r.mu.Unlock()

	logger.Info("service registered",
		zap.String("service", instance.ServiceName),
		zap.Int("max_sessions", instance.MaxSessions),
	)
	for _, cb := range callbacks {
		cb(instance, true)
	}
	return nil
}

// DeregisterService 注销服务
func (r *Registry) DeregisterService(name string) error {
	r.mu.Lock()
	instance, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	delete(r.services, name)
	callbacks := slices.Clone(r.callbacks)
	r.mu.Unlock()

	logger.Info("service deregistered", zap.String("service", name))
	for _, cb := range callbacks {
		cb(instance, false)
	}
	return nil
}

// Subscribe 订阅服务变更
func (r *Registry) Subscribe(callback ServiceCallback) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, callback)
	r.mu.Unlock()
}

// Lookup 查找服务
func (r *Registry) Lookup(name string) (*ServiceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.services[name]
	return instance, ok
}

// Services 返回已注册的服务名（有序）
func (r *Registry) Services() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// DeregisterAll 注销全部服务
func (r *Registry) DeregisterAll() {
	for _, name := range r.Services() {
		_ = r.DeregisterService(name)
	}
}
