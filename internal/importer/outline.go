package importer

import "intraportal/internal/msproject"

// outlineLink 一条任务记录在大纲中的结构位置
type outlineLink struct {
	level     int
	phaseUID  string // level 2 的所属阶段
	parentUID string // level >= 3 的父任务
	orphan    bool   // 没有合格的前驱，按未挂接处理
	duplicate bool   // UID 已出现过，记录被丢弃
}

// linkOutline 单次正向扫描重建大纲树。
// 栈中保存当前打开的祖先，遇到更浅或同级记录时出栈，栈顶即最近的更浅记录。
// level < 1 的记录（项目汇总任务）不入栈。
// 重复 UID 的记录仍占据大纲位置，但它的后代挂不上去，按孤儿处理。
func linkOutline(tasks []msproject.Task) []outlineLink {
	links := make([]outlineLink, len(tasks))
	stack := make([]int, 0, 8)
	seen := make(map[string]struct{}, len(tasks))

	for i, t := range tasks {
		level := t.Level()
		links[i].level = level
		if level < 1 {
			continue
		}
		if _, dup := seen[t.UID]; dup {
			links[i].duplicate = true
		}
		seen[t.UID] = struct{}{}

		for len(stack) > 0 && links[stack[len(stack)-1]].level >= level {
			stack = stack[:len(stack)-1]
		}

		if level >= 2 {
			if len(stack) == 0 {
				links[i].orphan = true
			} else {
				top := stack[len(stack)-1]
				switch {
				case links[top].duplicate:
					links[i].orphan = true
				case level == 2:
					links[i].phaseUID = tasks[top].UID
				case links[top].level >= 2:
					links[i].parentUID = tasks[top].UID
				default:
					// level >= 3 紧跟在阶段之后，没有父任务
					links[i].orphan = true
				}
			}
		}

		stack = append(stack, i)
	}
	return links
}
