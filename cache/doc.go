// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
包 cache 提供带键作用域的 Redis 缓存门面。

# 概述

本包不实现缓存引擎，只在外部 Redis 之上提供一层安全、可隔离的
访问门面：

  - 键作用域：所有键自动加 prefix:tenant: 前缀（tenant 为空时省略），
    不同应用或租户共享同一 Redis 实例时互不可见；
  - JSON 序列化：[Cache.Set] / [Cache.Get] 自动编解码任意值，
    [Cache.SetString] / [Cache.GetString] 提供原始字符串变体；
  - 未命中不是错误：Get 对不存在的键返回 (false, nil)；
  - nil 安全：nil *Cache 的全部操作安全空转，禁用缓存的部署
    无需条件分支。

# 装配

[New] 立即拨号并 Ping，失败作为构造错误返回；[NewOrNil] 把禁用
（REDIS_ENABLED=false 或 Config.Enabled=false）当作正常情况，
返回 nil 缓存。[FromEnv] 读取 REDIS_HOST、REDIS_PORT、REDIS_PASSWORD、
REDIS_DB、REDIS_PREFIX、REDIS_TENANT_ID、REDIS_TTL_SECONDS、
REDIS_ENABLED 等环境变量。

# 过期

Set 省略 ttl 或传 0 使用 Config.DefaultTTL；负值表示永不过期。
*/
package cache
