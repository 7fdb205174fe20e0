// Package widget 实现共享“当前选中实体”的组件状态机
//
// 组件之间不直接引用，只通过 messaging.Bus 上的通道交换 {entityId} 消息：
//
//   - ListController 持有筛选条件对应的工作集，用户选中行时发布消息，
//     并在 setFilter/refresh 前后发出成对的 loading/doneloading 通知；
//   - SelectionSynchronizer 订阅通道并跟随选中变化，绑定固定上下文时不订阅；
//   - EditReconciler 批量提交草稿，成功后清空草稿再刷新列表，失败时保留草稿。
//
// 所有组件均可在多个 goroutine 中使用，内部状态由组件自身的互斥锁保护，
// 异步的查询与提交在后台 goroutine 中执行，完成后在锁内应用结果。
package widget
