package utils

// 按键找出对应的数据。
// 返回顺序与keys一致，
// 不存在的键记录到失败列表中。
func Find[K comparable, T any](dataMap map[K]T, keys []K) (okData []T, failed []K) {
	okData = make([]T, 0, len(keys))
	for _, k := range keys {
		if d, ok := dataMap[k]; ok {
			okData = append(okData, d)
		} else {
			failed = append(failed, k)
		}
	}
	return
}
