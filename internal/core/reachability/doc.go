// Package reachability 判断本节点能否被公网直接拨入
//
// 客户端（Prober）周期性地挑选若干已连接节点，请求它们在一条新连接上回拨本节点，
// 并在新连接上回显一个随机数。服务端（Server）负责替其他节点执行回拨，受全局与
// 单节点速率限制，只拨号与请求方观察 IP 一致的地址。
//
// 探测结果由事件循环交给 Classifier：来自不同节点的连续 min_confirmations 次
// 一致结果才会改变分类，单个相反结果不会翻转已稳定的分类。
package reachability
